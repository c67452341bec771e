// config_test.go tests config files and OS ENV overrides
package config

import (
	"os"
	"path/filepath"
	"testing"
)

var confJSON = `{
	"dbtype": "mongodb",
	"dbconn": "mongodb://localhost",
	"port": "3031",
	"chains": [
		{"name": "mainnet", "node": "http://localhost:8545", "secret": ""},
		{"name": "rinkeby", "node": "http://localhost:8546", "secret": ""}
	],
	"detector": {"intervalMs": 15000, "detectFromApi": false},
	"sources": {"indexerUrl": "http://localhost:8080", "indexerKey": "ckey_test"}
}`

var confYAML = `dbtype: postgres
port: "3032"
chains:
  - name: matic
    node: http://localhost:8547
detector:
  intervalMs: 30000
`

// TestConfig extracts config from a JSON file and checks values loaded
func TestConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.json")
	if err := os.WriteFile(file, []byte(confJSON), 0600); err != nil {
		t.Fatal(err)
	}
	conf, err := ExtractConfiguration(file)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
	} else {
		// lets check the port
		if conf.Port != "3031" {
			t.Errorf("config port is not the expected %s", conf.Port)
		}
		// and the chains
		if len(conf.Chains) != 2 {
			t.Errorf("chains do not match the expected %v", conf.Chains)
		} else {
			if conf.Chains[0].Name != "mainnet" || conf.Chains[1].Name != "rinkeby" {
				t.Errorf("chains do not match the expected %v", conf.Chains)
			}
		}
		// the detector overrides
		if conf.Detector.IntervalMs != 15000 || conf.Detector.DetectFromAPI {
			t.Errorf("detector config does not match the expected %+v", conf.Detector)
		}
		// and the sources
		if conf.Sources.IndexerURL != "http://localhost:8080" || conf.Sources.IndexerKey != "ckey_test" {
			t.Errorf("source config does not match the expected %+v", conf.Sources)
		}
	}
}

// TestConfigYAML extracts config from a YAML file and checks values loaded, including the defaults left untouched
func TestConfigYAML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "conf.yaml")
	if err := os.WriteFile(file, []byte(confYAML), 0600); err != nil {
		t.Fatal(err)
	}
	conf, err := ExtractConfiguration(file)
	if err != nil {
		t.Errorf("Error reading config file:%e\n", err)
		return
	}
	if conf.DbType != "postgres" || conf.Port != "3032" {
		t.Errorf("config does not match the expected %+v", conf)
	}
	if len(conf.Chains) != 1 || conf.Chains[0].Name != "matic" {
		t.Errorf("chains do not match the expected %v", conf.Chains)
	}
	if conf.Detector.IntervalMs != 30000 {
		t.Errorf("detector config does not match the expected %+v", conf.Detector)
	}
	// untouched sections keep their defaults
	if conf.MbType != MbTypeDefault || conf.Sources.IndexerURL != IndexerURLDefault {
		t.Errorf("defaults were not preserved in %+v", conf)
	}
}

// TestConfigEnv checks the OS ENV variables override both defaults and file values
func TestConfigEnv(t *testing.T) {
	t.Setenv("NFTD_DBTYPE", "badger")
	t.Setenv("NFTD_PORT", "3999")
	t.Setenv("NFTD_CHAINS", `[{"name":"bsc","node":"http://localhost:8548","secret":""}]`)
	t.Setenv("NFTD_INTERVALMS", "5000")
	t.Setenv("NFTD_DETECTFROMAPI", "false")
	conf, err := ExtractConfiguration("")
	if err != nil {
		t.Errorf("Error reading config from ENV:%e\n", err)
		return
	}
	if conf.DbType != "badger" || conf.Port != "3999" {
		t.Errorf("config does not match the expected %+v", conf)
	}
	if len(conf.Chains) != 1 || conf.Chains[0].Name != "bsc" {
		t.Errorf("chains do not match the expected %v", conf.Chains)
	}
	if conf.Detector.IntervalMs != 5000 || conf.Detector.DetectFromAPI {
		t.Errorf("detector config does not match the expected %+v", conf.Detector)
	}
}

// TestConfigEnvBad checks invalid OS ENV values are reported
func TestConfigEnvBad(t *testing.T) {
	t.Setenv("NFTD_INTERVALMS", "soon")
	if _, err := ExtractConfiguration(""); err == nil {
		t.Error("expected an error for a non numeric NFTD_INTERVALMS")
	}
}
