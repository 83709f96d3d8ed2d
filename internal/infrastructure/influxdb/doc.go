// Package influxdb records UPnP state history in InfluxDB.
//
// Points are written through the non-blocking batched write API of
// influxdb-client-go v2 and carry a site tag taken from site.id.
//
// # Measurements
//
//   - upnp_state: one point per evented change. Tags device_udn,
//     device_type and service_id; one float field per numeric or boolean
//     state variable (booleans as 0/1).
//   - upnp_invocations: one point per completed action invocation. Tags
//     add action, source and outcome; fields duration_ms and, for failures,
//     error_code.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	host.Subscribe(func(c localsvc.Change) {
//	    client.WriteStateChange(c.Service, c.Values, c.Time)
//	})
//
// # Error Handling
//
// Write operations never block and never return errors. Batch failures are
// delivered to the SetOnError callback wrapped in ErrWriteFailed.
// Connection and health check errors are returned directly.
package influxdb
