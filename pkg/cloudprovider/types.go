package cloudprovider

import (
	"context"

	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// InventoryProvider lists the rented instances of one marketplace account.
type InventoryProvider interface {
	Name() string

	// TestConnection checks that the inventory API is reachable.
	TestConnection(ctx context.Context) error

	// ListInstances returns every instance on the account, running or not.
	ListInstances(ctx context.Context) ([]*Instance, error)

	// GetBalance returns the remaining account credit in USD.
	GetBalance(ctx context.Context) (float64, error)
}

// Instance is an inventory record: the descriptor used by the fleet
// computations plus how to reach the machine.
type Instance struct {
	fleet.InstanceDescriptor

	SSHHost string `json:"sshHost"`
	SSHPort int    `json:"sshPort"`

	// Missing names required fields the inventory record lacked.
	Missing []string `json:"missing,omitempty"`
}

// MissingFieldErrors reports each absent required field.
func (i *Instance) MissingFieldErrors() []error {
	errs := make([]error, 0, len(i.Missing))
	for _, f := range i.Missing {
		errs = append(errs, &fleet.MissingFieldError{InstanceID: i.ID, Field: f})
	}
	return errs
}

// Descriptors extracts the fleet descriptors from a listing.
func Descriptors(instances []*Instance) []fleet.InstanceDescriptor {
	out := make([]fleet.InstanceDescriptor, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.InstanceDescriptor)
	}
	return out
}
