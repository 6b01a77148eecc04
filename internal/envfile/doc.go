// Package envfile discovers and reads conda environment-definition files.
//
// Discovery is a non-recursive scan of a single directory against the
// glob "*<filter>*.y*ml", which deliberately accepts both .yml and .yaml
// (and anything between the "y" and the "ml"). Only base names are
// returned, in directory-listing order.
//
// The package also parses definitions with gopkg.in/yaml.v3 so that the
// CLI can describe a file and reject malformed ones before handing them to
// the package manager, and it provides the per-invocation temporary copy
// that env create reads from.
package envfile
