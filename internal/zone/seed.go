package zone

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// seedFile is the on-disk seed format: a flat list of zone definitions.
type seedFile struct {
	Zones []SeedZone `yaml:"zones"`
}

// LoadSeedFile parses a YAML seed file into zone definitions. Validation of
// individual entries happens in SeedZones so file and programmatic seeding
// share the same rules.
func LoadSeedFile(path string) ([]SeedZone, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "zone: read seed file %s", path)
	}

	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "zone: parse seed file %s", path)
	}
	if len(f.Zones) == 0 {
		return nil, eris.Errorf("zone: seed file %s contains no zones", path)
	}
	return f.Zones, nil
}
