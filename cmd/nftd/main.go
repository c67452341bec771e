// Package main: collectible detector service.
//
// The service polls the configured sources for the active account's
// collectibles, serves the merged view over a RESTful API and publishes an
// event to the message broker after every change.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/openwalletd/nftd/api"
	"github.com/openwalletd/nftd/detector"
	"github.com/openwalletd/nftd/lib/chain"
	"github.com/openwalletd/nftd/lib/config"
	"github.com/openwalletd/nftd/lib/msg"
	"github.com/openwalletd/nftd/lib/msg/amqp"
	"github.com/openwalletd/nftd/lib/source"
	"github.com/openwalletd/nftd/lib/store"
	"github.com/openwalletd/nftd/lib/store/db"
)

func main() {
	// get command line flags
	confPath := flag.String("c", "", "flag to get configuration from json or yaml file")
	monitor := flag.Bool("m", false, "flag to monitor the server with Prometheus at http://localhost:9100")
	flag.Parse()

	// extract configuration
	conf, err := config.ExtractConfiguration(*confPath)
	if err != nil {
		panic(err)
	}

	log.Printf("Configuration:%+v", conf)

	// connect to database
	var dbConn store.DB

	if conf.DbConn != "" {
		if dbConn, err = db.New(conf.DbType, conf.DbConn); err != nil {
			panic(err)
		}

		log.Printf("Connecting to database:%+v\n", conf.DbConn)
	}

	// load all chain clients
	chains, err := chain.Init(conf.Chains)
	if err != nil {
		panic(err)
	}

	log.Print("Chain clients loaded")

	// load Prometheus monitor
	if *monitor {
		go func() {
			log.Println("Serving metrics API")

			h := http.NewServeMux()

			h.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(":9100", h)
		}()
	}

	// load message broker
	var mb msg.MsgBroker

	switch conf.MbType {
	case "amqp":
		if mb, err = amqp.New(conf.MbConn); err != nil {
			time.Sleep(10 * time.Second) // wait 10s for AMQP to be ready and try to reconnect

			if mb, err = amqp.New(conf.MbConn); err != nil {
				panic(err)
			}
		}

		if err = mb.Setup(nil); err != nil {
			panic(err)
		}
	default:
		log.Printf("Unknown message broker type: %s\n", conf.MbType)
	}

	// set up the detection sources and the detector service
	srcs := source.Init(conf.Sources, dbConn, chains)
	det := detector.New(dbConn, mb, chains, srcs, conf.Detector)

	// create the API service
	a := api.New(conf.DbType, dbConn, mb, chains, det)

	// log asset updates while the service runs
	unsub := a.WatchAssets()
	defer unsub()

	// prime the configured scope and start detecting when an account is set
	det.SetScope(conf.Detector.Account, conf.Detector.Network)

	if conf.Detector.Account != "" {
		det.StartDetection("")
	}

	// capture CTRL+C or docker's SIGTERM for gracious exit
	finish := make(chan int)

	go func() {
		sigchan := make(chan os.Signal, 10)
		signal.Notify(sigchan, os.Interrupt, syscall.SIGTERM)
		<-sigchan
		log.Println("Program killed !")
		// do last actions and wait for all write operations to end
		a.StopAPI()
		close(finish)
	}()

	// init RESTful API, wait for its return and log response
	log.Printf("Detector: %s\n", a.Init(conf.RestfulEndpoint, conf.Port, conf.SSLPort, conf.SSLCert, conf.SSLKey))

	<-finish
}
