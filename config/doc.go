// Package config loads the YAML configuration shared by the stratum
// commands. Values absent from the file keep their defaults; secrets can be
// supplied through the environment instead of the file.
package config
