// Package config provides configuration management for locomotive types.
//
// The config package handles:
//   - Loading locomotive configurations from JSON files
//   - Validation through locomotive.ValidateConfig
//   - Default configuration management
//   - Configuration discovery and listing
//
// Configuration Format:
//
// Each JSON file in the configs directory describes one locomotive type:
// its engines, transmission, optional gearbox, traction envelope or force
// curves, and fuel tank. The file name without extension is the config ID
// used when creating sessions.
//
// Bundled Configurations:
//   - class37: single-engine diesel-electric, basic traction model
//   - twin_engine: two engines of different ratings on one electric drive
//   - dmu_mechanical: railcar with an automatic mechanical gearbox
//   - shunter_hydraulic: hydraulic shunter driven by tabulated force curves
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	locoConfig, err := manager.LoadConfig("dmu_mechanical")
//	defaultConfig := manager.GetDefault()
//	configs, err := manager.ListConfigs()
package config
