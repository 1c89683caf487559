package core

import (
	"context"

	"gopkg.in/yaml.v3"
)

// The optional interfaces below are checked by the App in this order for
// every module named under modules: in the config:
//
//	Configure -> Provision -> Validate   while loading (LoadModule)
//	Start                                 in load order (App.Start)
//	Stop                                  in reverse start order (App.Stop)

// Configurable modules receive their own node from the config file, such
// as the body of "tool.wikipedia:". Modules without a node are not called.
type Configurable interface {
	Configure(node *yaml.Node) error
}

// Provisioner modules apply defaults and pick up shared services, such as
// the tool registry or the credential store, from the AppContext.
type Provisioner interface {
	Provision(ctx *AppContext) error
}

// Validator modules check their settings once provisioned. Validate must
// not touch the network; a provider reporting a missing key fails here.
type Validator interface {
	Validate() error
}

// Starter modules open listeners or connections, e.g. the gateway's HTTP
// server or an MCP client session.
type Starter interface {
	Start() error
}

// Stopper modules release what Start (or Provision) acquired.
type Stopper interface {
	Stop(ctx context.Context) error
}
