package main

import "github.com/stelladb/stellator/scheme"

// Schemes is the set of declared schemes this binary migrates. An
// application embedding stelladef as its own migration tool replaces
// this with its own scheme.New(...) declarations — there is no SQL file
// for stelladef to parse, since the desired state here is the Go value
// a caller built with the scheme package, not text.
var Schemes = []*scheme.Scheme{}
