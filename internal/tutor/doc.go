// Package tutor ties the catalog, the stripper, the sandbox, the renderer
// and the progress tracker into the run pipeline behind the HTTP API and
// the CLI.
//
// Script lessons are stripped when typed, executed and validated against
// their logs and source. DOM lessons also hand the validator the document
// as it stands after the run. Markup lessons are rendered and validated
// against the assembled document.
package tutor
