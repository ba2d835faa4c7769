// Package httpapi exposes the log engine's operator operations over HTTP using echo.
//
// Filters travel in the "filter" query parameter in the codec format of logstore.Serialize,
// for example "order_placed;amount|>|100&country|=|DE". Errors are answered as
// {"error": "..."} with 400 for bad input, 404 for unknown ids and 500 otherwise.
package httpapi
