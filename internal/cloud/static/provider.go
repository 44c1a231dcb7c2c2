// Package static serves an inventory from a YAML file. It backs offline
// runs and tests where no marketplace account is available.
package static

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/koptimizer/rigwatch/pkg/cloudprovider"
	"github.com/koptimizer/rigwatch/pkg/fleet"
)

// inventoryFile is the on-disk layout.
type inventoryFile struct {
	Balance   *float64         `yaml:"balance"`
	Instances []instanceRecord `yaml:"instances"`
}

type instanceRecord struct {
	ID         string   `yaml:"id"`
	GPUName    string   `yaml:"gpuName"`
	NumGPUs    int      `yaml:"numGPUs"`
	HourlyCost *float64 `yaml:"hourlyCost"`
	GPUUtil    *float64 `yaml:"gpuUtil"`
	Label      string   `yaml:"label"`
	Status     string   `yaml:"status"`
	SSHHost    string   `yaml:"sshHost"`
	SSHPort    int      `yaml:"sshPort"`
}

// Provider implements cloudprovider.InventoryProvider over a YAML file. The
// file is re-read on every call so edits show up on the next poll.
type Provider struct {
	path string
}

func NewProvider(path string) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: static inventory path is required", fleet.ErrInvalidConfig)
	}
	return &Provider{path: path}, nil
}

func (p *Provider) Name() string { return "static" }

func (p *Provider) TestConnection(ctx context.Context) error {
	_, err := p.load()
	return err
}

func (p *Provider) ListInstances(ctx context.Context) ([]*cloudprovider.Instance, error) {
	inv, err := p.load()
	if err != nil {
		return nil, err
	}

	instances := make([]*cloudprovider.Instance, 0, len(inv.Instances))
	for i, rec := range inv.Instances {
		inst := &cloudprovider.Instance{
			InstanceDescriptor: fleet.InstanceDescriptor{
				ID:            rec.ID,
				HardwareClass: rec.GPUName,
				Status:        fleet.ParseStatus(rec.Status),
			},
			SSHHost: rec.SSHHost,
			SSHPort: rec.SSHPort,
		}
		if inst.ID == "" {
			inst.ID = fmt.Sprintf("#%d", i)
			inst.Missing = append(inst.Missing, "id")
		}
		if rec.GPUName == "" {
			inst.Missing = append(inst.Missing, "gpuName")
		}
		if rec.NumGPUs > 0 {
			inst.GPUCount = fleet.Some(rec.NumGPUs)
		}
		if rec.HourlyCost != nil {
			inst.HourlyCost = fleet.Some(*rec.HourlyCost)
		} else {
			inst.Missing = append(inst.Missing, "hourlyCost")
		}
		if rec.GPUUtil != nil {
			inst.GPUUtilization = fleet.Some(*rec.GPUUtil)
		}
		if rec.Label != "" {
			inst.Label = fleet.Some(rec.Label)
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func (p *Provider) GetBalance(ctx context.Context) (float64, error) {
	inv, err := p.load()
	if err != nil {
		return 0, err
	}
	if inv.Balance == nil {
		return 0, fmt.Errorf("inventory %s: %w: balance", p.path, fleet.ErrMissingField)
	}
	return *inv.Balance, nil
}

func (p *Provider) load() (*inventoryFile, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("reading inventory file: %w", err)}
	}
	var inv inventoryFile
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, &fleet.FetchError{Err: fmt.Errorf("parsing inventory file: %w", err)}
	}
	return &inv, nil
}
