// Command medcat annotates clinical text with medical concepts.
package main

import (
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/config/file"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/dataset"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driven/storage/memory"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/adapters/driving/cli"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driven"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/ports/driving"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/services"
	"github.com/meng-ma-biomedical-AI/MedCAT/internal/normalisers"
)

func main() {
	a := &app{}
	cli.Execute(cli.Dependencies{
		Settings:   a.settings,
		Datasets:   dataset.Loader{},
		Extractors: normalisers.Defaults(),
		LoadModel:  a.loadModel,
	})
}

// app holds what the model loader needs from earlier wiring.
type app struct {
	settingsSvc driving.SettingsService
}

// settings builds the settings service over the config file, or over an
// in-memory store when noConfig is set.
func (a *app) settings(noConfig bool) (driving.SettingsService, error) {
	var store driven.ConfigStore
	if noConfig {
		store = memory.NewConfigStore()
	} else {
		dir, err := file.DefaultDir()
		if err != nil {
			return nil, err
		}
		fs, err := file.NewConfigStore(dir)
		if err != nil {
			return nil, err
		}
		store = fs
	}
	a.settingsSvc = services.NewSettingsService(store)
	return a.settingsSvc, nil
}
