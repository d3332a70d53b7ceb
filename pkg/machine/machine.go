// Package machine decodes the boot-time machine schema (spec.md §6): the
// YAML description of the host block/tty devices a Kernel should expose
// through DevFS. Grounded on vorteil's config layer, the richest config
// loader in the retrieved corpus, which pairs gopkg.in/yaml.v2 with
// spf13/viper the same way this package does.
package machine

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/nativerv/eunix/pkg/fserr"
)

// DeviceType is the kind of host device a DevFS entry names.
type DeviceType string

const (
	Block DeviceType = "block"
	TTY   DeviceType = "tty"
)

// Device is one entry under machine.devices in the schema.
type Device struct {
	Path string
	Type DeviceType
}

// DeviceEntry pairs a device's declared name with its Device, preserving
// the YAML document's declaration order — DevFS naming (spec.md §4.5) is
// deterministic in that order, which a plain Go map cannot guarantee.
type DeviceEntry struct {
	Name   string
	Device Device
}

// DeviceTable is the ordered list of devices a Machine declares.
type DeviceTable []DeviceEntry

// Machine is the decoded boot-time schema.
type Machine struct {
	Devices DeviceTable
}

// rawSchema mirrors the YAML shape using yaml.MapSlice so decode order
// survives; yaml.v2 is chosen over newer alternatives specifically for
// MapSlice support.
type rawSchema struct {
	Machine struct {
		Devices yaml.MapSlice `yaml:"devices"`
	} `yaml:"machine"`
}

// Load reads and decodes the machine schema at path via viper, so
// deployments can override individual device paths with environment
// variables (EUNIX_MACHINE_DEVICES_<NAME>_PATH) without editing the file.
func Load(path string) (*Machine, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("EUNIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		return nil, fserr.New(fserr.EIO, "read machine schema %s: %s", path, err)
	}

	raw, err := yamlRawSchema(path)
	if err != nil {
		return nil, err
	}

	m := &Machine{}
	for _, item := range raw.Machine.Devices {
		name, ok := item.Key.(string)
		if !ok {
			return nil, fserr.New(fserr.EINVAL, "device name must be a string in %s", path)
		}
		fields, ok := item.Value.(yaml.MapSlice)
		if !ok {
			return nil, fserr.New(fserr.EINVAL, "malformed device entry %q in %s", name, path)
		}
		dev := Device{}
		for _, f := range fields {
			key, _ := f.Key.(string)
			val, _ := f.Value.(string)
			switch key {
			case "path":
				dev.Path = val
			case "type":
				dev.Type = DeviceType(val)
			}
		}
		if override := v.GetString(fmt.Sprintf("machine.devices.%s.path", name)); override != "" {
			dev.Path = override
		}
		if dev.Type != Block && dev.Type != TTY {
			return nil, fserr.New(fserr.EINVAL, "device %q has unknown type %q in %s", name, dev.Type, path)
		}
		m.Devices = append(m.Devices, DeviceEntry{Name: name, Device: dev})
	}
	return m, nil
}

func yamlRawSchema(path string) (*rawSchema, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fserr.New(fserr.EIO, "read machine schema %s: %s", path, err)
	}
	raw := &rawSchema{}
	if err := yaml.Unmarshal(contents, raw); err != nil {
		return nil, fserr.New(fserr.EINVAL, "parse machine schema %s: %s", path, err)
	}
	return raw, nil
}
