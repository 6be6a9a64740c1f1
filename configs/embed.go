// Package configs provides the embedded configuration template for
// webrecall. Embedding at build time keeps `webrecall init` working in every
// distribution, source builds and binary releases alike.
package configs

import _ "embed"

// ConfigTemplate is the annotated starter configuration written by
// `webrecall init` as webrecall.yaml in the working directory.
//
//go:embed webrecall.example.yaml
var ConfigTemplate string
