// Package jsonl parses JSON Lines data into aggregation Rows. This parser uses https://github.com/tidwall/gjson to process data, and supports key and column paths formatted as gjson paths.
package jsonl
