// Package modules turns import specifiers into module keys and keys into
// source text.
//
// Specifiers prefixed with "pkg:" name registry packages and are resolved at
// load time through the npm resolver; the entry file found for each is
// recorded in a SpecifierPathMap so imports made from inside the package can
// be resolved against its real directory. Everything else is a relative,
// absolute or file:// path handled by FSLoader.
package modules
