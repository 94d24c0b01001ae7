// internal/enginefactory/factory.go
// Package enginefactory constructs inference engines from their configured
// selector names.
package enginefactory

import (
	"fmt"

	"github.com/mwiater/dromos/internal/appconfig"
	"github.com/mwiater/dromos/internal/artifact"
	"github.com/mwiater/dromos/internal/engines"
	"github.com/mwiater/dromos/internal/engines/ort"
	"github.com/mwiater/dromos/internal/engines/torch"
)

// New returns the engine implementation for name, wired to its configured
// runtime host. The onnxruntime engine records optimization-pass counts into
// fusion.
func New(name string, cfg *appconfig.Config, fusion *artifact.FusionStats) (engines.Engine, error) {
	host, ok := cfg.HostFor(name)
	if !ok {
		return nil, fmt.Errorf("no runtime host configured for engine %q", name)
	}

	switch name {
	case appconfig.EngineONNXRuntime:
		return ort.New(host, cfg, fusion), nil
	case appconfig.EngineTorch:
		return torch.New(host, cfg, false), nil
	case appconfig.EngineTorchScript:
		return torch.New(host, cfg, true), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
