// Package file loads aggregation Rows from a set of files on disk. Files are parsed concurrently,
// each in its entirety, so it is favourable if individual files represent roughly equal-sized
// divisions of data.
package file
