/*
Package variant implements the tagged-union row value used throughout
synccore's metadata store: a column is either invalid, an integer, a string,
a floating-point real, or null, and a row is an ordered slice of such values.

# Accessors

ExpectNumber, ExpectString, ExpectLString and ExpectReal never panic on a
type mismatch. A mismatch is logged at error level through pkg/log and the
documented typed zero value is returned instead, so callers that misuse a
column degrade rather than crash.

# Row-of-strings

RowText renders every column as text (numbers and reals stringified, null
becomes an absent string) for callers that only want a display projection.
*/
package variant
