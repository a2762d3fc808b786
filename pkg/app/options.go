package app

import (
	cliflag "github.com/kenneth-kang/elementary-chatbot/pkg/app/cliflag"
)

// CliOptions abstracts configuration options for reading parameters from the
// command line.
type CliOptions interface {
	// Flags returns flags grouped into named sections.
	Flags() cliflag.NamedFlagSets

	// Complete fills in any fields not set that are required to have valid data.
	Complete() error

	// Validate checks the options and returns the first error encountered.
	Validate() error
}
