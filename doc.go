// Package nftd and its sub-packages implement the backend service that detects the collectibles (NFTs) owned by
// blockchain accounts and serves them to wallet front-ends.
/*
nftd provides you with a collectible detector microservice and a small companion tool:

1) the detector microservice (packages detector and api) that polls several collectible sources, merges their reports
 into a single view per account and network and exposes it through a RESTful API.

2) a watch tool (cmd/watch) that tails the asset events the detector publishes to the message broker.

Architecture

The detector keeps one scope per (account, network) pair in an in-memory store (package lib/assets) and marks one of
them active. A scheduler runs a detection cycle for the active scope at a configurable interval. Each cycle asks every
source for the collectibles the account holds, merges the reports and replaces the scope's collectibles with the
result, so tokens a source no longer reports disappear. Detected contracts are only ever added. After every change the
detector persists a snapshot to the database and publishes an event to the message broker so front-ends can react
without polling.

Three sources feed a cycle (package lib/source): a registry of user added entries kept in the database (custom), an
indexer API that scans token transfers per chain (indexer) and a marketplace API with curated metadata (market). Each
source degrades gracefully, reporting a network it does not serve yields an empty result and a failing source never
blocks the others. User entries always win the merge; for the rest the marketplace report takes precedence and the
indexer fills in whatever it left blank.

Collectible and contract metadata are completed on chain through the configured nodes (package lib/chain) using ERC721
and ERC1155 contract calls, with an optional metadata API preferred when configured (package lib/normalize). Ownership
is verified the same way, so stale user entries are dropped instead of shown.

The database (package lib/store) and the message broker (package lib/msg) are implemented as product agnostic layers.
Snapshots and user entries can live in MongoDB, PostgreSQL or an embedded Badger store. The microservice can also be
monitored via a Prometheus API by setting the flag "-m" at startup.

Detector

The detector microservice can be started running cmd/nftd/main.go. Its RESTful API exposes the available networks, the
merged asset views, registration of custom collectibles and fungible tokens, the active scope selection and the
detection scheduler controls. See package api for the routes.

Watch

The watch tool can be started running cmd/watch/main.go. It consumes the asset event queues of the configured networks
and logs every event, which is handy to follow what the detector finds without querying the API.

*/
package nftd
