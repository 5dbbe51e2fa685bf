// Package device provides the device registry.
//
// A device is a provisioned light, fan or air conditioner. It belongs to an
// owning account, optionally sits in a room, and authenticates its telemetry
// with a per-device credential. The fields IsOn and Value are the last state
// the device reported; operators never write them directly.
//
// # Key Types
//
//   - Device: the provisioned entity
//   - Kind: light, fan or ac
//   - ObservedState: a partial state report applied by ingestion
//   - Repository / SQLiteRepository: persistence
//   - Registry: cached, thread-safe access used by the API and ingestion
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//	d, err := registry.GetDevice(ctx, "lab-fan-01")
//
// Ingestion updates state inside its own transaction through
// SQLiteRepository.WithTx and then calls Registry.RefreshDevice.
package device
