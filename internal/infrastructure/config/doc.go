// Package config loads config.yaml for upnpd.
//
// Values are layered: built-in defaults, then the YAML file, then UPNPD_*
// environment variables (UPNPD_SITE_ID, UPNPD_MQTT_PASSWORD,
// UPNPD_INFLUXDB_TOKEN, UPNPD_API_PORT and so on). Secrets belong in the
// environment rather than the file.
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	soapProcessor, err := soap.New(cfg.SOAPStrategy(), log.Component("soap"))
//
// Load reports every invalid setting in one ErrInvalidConfig error, so a
// broken deployment is fixed in one pass.
package config
