// Package logging builds the daemon's log/slog logger.
//
// Every entry carries service=upnpd and the build version, plus site_id
// once config.yaml is loaded. Subsystems receive a child from Component
// and see it only through their own Logger interface.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
//	log := logging.New(cfg.Logging, version).Site(cfg.Site)
//	soapProcessor, err := soap.New(cfg.SOAPStrategy(), log.Component("soap"))
//
// SOAP and GENA bodies are logged by size at debug level, never by
// content; MQTT and InfluxDB credentials are never logged.
package logging
