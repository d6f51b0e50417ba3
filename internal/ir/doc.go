// Package ir provides the value, key and entity types shared by every other
// dsquery package.
//
// This package contains data types and their encodings only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed: Null, Int, Bool, String, Float and Key only
//   - One total order across types (Null < Int < Bool < String < Float < Key),
//     reproduced byte-for-byte by EncodeValue so native indexes and the
//     in-memory comparator agree
//   - A key's encoding prefixes all of its descendants' encodings, which turns
//     ancestor filters into range scans
//   - Records are canonical JSON (sorted keys, NFC strings); bare JSON numbers
//     are always integers
package ir
