// Package cluster describes the static topology of a sort run: the worker
// endpoints the coordinator talks to and the run configuration loaded from
// YAML or the environment.
//
// # Topology
//
// The run uses a hub-and-spoke layout. The coordinator holds the dataset and
// opens one TCP connection per configured endpoint:
//
//	              ┌──────────────┐
//	              │ Coordinator  │
//	              │  partition   │
//	              │  dispatch    │
//	              │  merge       │
//	              └──────┬───────┘
//	                     │
//	      ┌──────────────┼──────────────┐
//	      │              │              │
//	┌─────▼─────┐ ┌─────▼─────┐ ┌─────▼─────┐
//	│ Worker 0  │ │ Worker 1  │ │ Worker 2  │
//	│ part [0]  │ │ part [1]  │ │ part [2]  │
//	└───────────┘ └───────────┘ └───────────┘
//
// Endpoints are ordered. Endpoint i always receives partition i, which keeps
// runs reproducible for a fixed seed.
//
// # Configuration
//
// Config is loaded with LoadConfig from a YAML file; missing fields keep the
// values of DefaultConfig. The coordinator binary lets environment variables
// override individual fields (see cmd/coordinator).
//
//	cfg, err := cluster.LoadConfig("sort.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range cfg.Endpoints {
//	    fmt.Println(e.Addr())
//	}
package cluster
