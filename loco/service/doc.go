// Package service provides the driving layer on top of the locomotive
// propulsion model.
//
// DriveService is the main interface. It owns the cab controls of every
// session, advances sessions in fixed ticks and integrates the resulting
// tractive force into a point-mass train when the caller does not supply
// the speed itself. SessionManager stores sessions, ConfigManager loads
// locomotive configurations and TelemetryStore keeps per-tick samples.
//
// Usage:
//
//	configMgr, _ := config.NewManager("configs")
//	sessionMgr := session.NewManager()
//	drive := service.NewDriveService(sessionMgr, configMgr)
//
//	info, err := drive.CreateSession(ctx, "class37")
//	if err != nil {
//		log.Fatal(err)
//	}
//	drive.EngineCommand(ctx, info.ID, locomotive.AllEngines, "start")
//	drive.SetControls(ctx, info.ID, service.ControlsRequest{Throttle: &full})
//	result, err := drive.Step(ctx, info.ID, service.StepRequest{Ticks: 100})
//
// Sessions are identified by 4-character IDs and each holds its own
// locomotive instance.
package service
