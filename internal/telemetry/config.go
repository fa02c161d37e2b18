package telemetry

import "codeberg.org/mutker/ecodanctl/internal/errors"

const defaultNamespace = "ecodan"

type Config struct {
	Namespace string
	// Targets and Streams list the label values exported at zero before
	// their first event.
	Targets []string
	Streams []string
}

func DefaultConfig() Config {
	return Config{
		Namespace: defaultNamespace,
		Targets:   []string{"tank", "house"},
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Namespace == "" {
		return errFactory.New(ErrInvalidNamespace)
	}
	return nil
}
