// Package receivers provides the built-in receiver, worker and thread types.
//
// None of them is referenced directly by the container runtime. Register adds
// them to a StdInitialContext under their type names and configuration picks
// which ones a container uses:
//
//	containers:
//	  - name: web
//	    receiver:
//	      type: HttpReceiver
//	      params: {address: "127.0.0.1:8080"}
//	      worker: {type: StaticWorker}
//	      thread: {type: BoundedThread, params: {max_concurrency: "32"}}
package receivers
