package config

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ServiceProfile describes one service entry of a device profile: the
// bits a hosted device needs to register a service with the Device Host.
type ServiceProfile struct {
	Name            string `yaml:"name"`
	ServiceType     string `yaml:"service_type"`
	ServiceID       string `yaml:"service_id"`
	NamespaceAbbrev string `yaml:"namespace_abbrev"`
}

// DeviceProfile is the identity and service list of a hosted device,
// loaded from YAML rather than flat env vars because it is structured
// data.
type DeviceProfile struct {
	UDN              string           `yaml:"udn"`
	DeviceType       string           `yaml:"device_type"`
	FriendlyName     string           `yaml:"friendly_name"`
	Manufacturer     string           `yaml:"manufacturer"`
	ManufacturerURL  string           `yaml:"manufacturer_url"`
	ModelDescription string           `yaml:"model_description"`
	ModelName        string           `yaml:"model_name"`
	ModelNumber      string           `yaml:"model_number"`
	SerialNumber     string           `yaml:"serial_number"`
	UPC              string           `yaml:"upc"`
	Services         []ServiceProfile `yaml:"services"`
}

// LoadDeviceProfile reads and parses a device profile from path. A
// missing UDN is filled in with a freshly generated one and the profile
// is not rewritten; callers that want a stable UDN across restarts
// should persist one in the profile file themselves.
func LoadDeviceProfile(path string) (DeviceProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeviceProfile{}, fmt.Errorf("read device profile %s: %w", path, err)
	}

	var profile DeviceProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return DeviceProfile{}, fmt.Errorf("parse device profile %s: %w", path, err)
	}

	if profile.UDN == "" {
		profile.UDN = "uuid:" + uuid.NewString()
	}
	if profile.FriendlyName == "" {
		return DeviceProfile{}, fmt.Errorf("device profile %s: friendly_name is required", path)
	}

	return profile, nil
}
