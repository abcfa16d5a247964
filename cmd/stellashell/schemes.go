package main

import "github.com/stelladb/stellator/scheme"

// Schemes mirrors cmd/stelladef's registry: the set of schemes this
// shell session can address by name. An application embedding
// stellashell for ad hoc production debugging replaces this with its
// own scheme.New(...) declarations.
var Schemes = []*scheme.Scheme{}
