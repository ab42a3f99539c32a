// Package appserver is a container runtime that picks its receiver implementations
// from configuration.
//
// A Server owns a set of Containers. Each Container carries a path-addressable
// configuration tree, the applications deployed into it and a started flag. When
// the Server runs a Container, the Container reads the receiver type name from
// /container/receiver, asks its InitialContext to build that type with the
// arguments (InitialContext, *Container), and starts it:
//
//	ic := appserver.NewStdInitialContext()
//	_ = appserver.RegisterReceiver(ic, "EchoReceiver", newEchoReceiver)
//
//	cfg := appserver.NewNode("container", "",
//		appserver.NewNode("receiver", "EchoReceiver"))
//
//	srv := appserver.NewServer(ic)
//	c, _ := srv.Deploy("echo", cfg, nil)
//	_ = srv.Start(ctx)
//	_ = srv.Wait()
//	fmt.Println(c.IsStarted())
//
// Concrete receivers, workers and thread strategies are named only in
// configuration. Swapping one for another is a configuration change.
package appserver
