// Package config defines the format-agnostic pipeline model. The HCL
// loader translates parsed files into these structures; everything past
// loading (provisioning, execution, publishing) depends only on this
// package, never on the concrete configuration syntax.
package config
