// Package connectors holds the document sources that feed ingestion.
// The filesystem connector watches a drop folder; extraction from richer
// formats happens upstream of this module.
package connectors
