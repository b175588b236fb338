// Package protocol implements the wire protocol between client and
// server.
//
// Every message is one JSON value framed by a 4-byte big-endian length
// prefix. Requests and responses are externally tagged variants:
//
//	{"Get":"key"}  {"Set":["key","value"]}  {"Rm":"key"}
//	"Success"  "KeyNotFound"  {"Ok":"value"}  {"Ok":null}  "Err"
//
// A connection carries exactly one request and one response.
package protocol
