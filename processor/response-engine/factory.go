package responseengine

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the response-engine component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "response-engine",
		Factory:     NewComponent,
		Schema:      responseEngineSchema,
		Type:        "processor",
		Protocol:    "nats",
		Domain:      "irops",
		Description: "Runs the disruption-response workflow for submitted operational snapshots",
		Version:     "0.1.0",
	})
}
