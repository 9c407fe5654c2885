package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"maintflow/internal/domain/workorder"
	"maintflow/internal/errs"
	"maintflow/internal/ports"
)

type sectorNode struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Assets      []string `yaml:"assets"`
	Instruments []string `yaml:"instruments"`
}

type areaNode struct {
	ID          string       `yaml:"id"`
	Name        string       `yaml:"name"`
	Sectors     []sectorNode `yaml:"sectors"`
	Assets      []string     `yaml:"assets"`
	Instruments []string     `yaml:"instruments"`
}

type plantNode struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Areas []areaNode `yaml:"areas"`
}

type document struct {
	Plants []plantNode `yaml:"plants"`
}

// Directory is an in-memory plant hierarchy loaded from YAML. Assets and
// instruments may hang off a sector or directly off an area.
type Directory struct {
	targets map[workorder.TargetKind]map[string]workorder.Location
}

var _ ports.TargetDirectory = (*Directory)(nil)

func LoadFile(path string) (*Directory, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, errors.New("directory file is required")
	}
	raw, err := os.ReadFile(trimmed)
	if err != nil {
		return nil, errs.Wrapf(err, "read directory %q", trimmed)
	}
	dir, err := Parse(raw)
	if err != nil {
		return nil, errs.Wrapf(err, "directory %q", trimmed)
	}
	return dir, nil
}

func Parse(raw []byte) (*Directory, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("directory: payload is empty")
	}
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("directory: decode: %w", err)
	}

	d := &Directory{targets: map[workorder.TargetKind]map[string]workorder.Location{
		workorder.TargetAsset:      {},
		workorder.TargetInstrument: {},
	}}
	for _, plant := range doc.Plants {
		if strings.TrimSpace(plant.ID) == "" {
			return nil, errors.New("directory: plant id is required")
		}
		for _, area := range plant.Areas {
			if strings.TrimSpace(area.ID) == "" {
				return nil, fmt.Errorf("directory: plant %s: area id is required", plant.ID)
			}
			loc := workorder.Location{PlantID: plant.ID, AreaID: area.ID}
			if err := d.add(loc, area.Assets, area.Instruments); err != nil {
				return nil, err
			}
			for _, sector := range area.Sectors {
				if strings.TrimSpace(sector.ID) == "" {
					return nil, fmt.Errorf("directory: area %s: sector id is required", area.ID)
				}
				loc.SectorID = sector.ID
				if err := d.add(loc, sector.Assets, sector.Instruments); err != nil {
					return nil, err
				}
			}
		}
	}
	return d, nil
}

func (d *Directory) add(loc workorder.Location, assets, instruments []string) error {
	for kind, ids := range map[workorder.TargetKind][]string{
		workorder.TargetAsset:      assets,
		workorder.TargetInstrument: instruments,
	} {
		for _, raw := range ids {
			id := strings.TrimSpace(raw)
			if id == "" {
				continue
			}
			if _, dup := d.targets[kind][id]; dup {
				return fmt.Errorf("directory: duplicate %s %s", kind, id)
			}
			d.targets[kind][id] = loc
		}
	}
	return nil
}

// Resolve maps a target to its location. Maintenance orders take assets only;
// quality orders take instruments or assets.
func (d *Directory) Resolve(ctx context.Context, discipline workorder.Discipline, target workorder.TargetRef) (workorder.Location, error) {
	if ctx == nil {
		return workorder.Location{}, errors.New("context is required")
	}
	if discipline == workorder.DisciplineMaintenance && target.Kind != workorder.TargetAsset {
		return workorder.Location{}, workorder.Validationf("maintenance orders must target an asset, got %s", target.Kind)
	}
	loc, ok := d.targets[target.Kind][strings.TrimSpace(target.ID)]
	if !ok {
		return workorder.Location{}, workorder.Validationf("unknown %s %q", target.Kind, target.ID)
	}
	return loc, nil
}

func (d *Directory) Len() int {
	return len(d.targets[workorder.TargetAsset]) + len(d.targets[workorder.TargetInstrument])
}
