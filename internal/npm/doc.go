/*
Package npm installs registry packages into a local cache and locates their
entry and typing files.

# Install

Install resolves an empty version through the "latest" dist-tag, then
serializes the rest of the work per name@version:

	cache hit   {root}/{name}/{version}/package/package.json exists -> return
	cache miss  metadata -> tarball -> integrity -> unpack -> rename into place

A version directory without a manifest is treated as corrupt and refetched.
Cached entries are never revalidated; pass an explicit version to pin.

# Entry points

FindEntryPoint applies ordered rules to the parsed manifest:

 1. exports["."].import (or .import.default)
 2. module
 3. exports["."] as a string
 4. exports["."].require (or .require.default)
 5. main
 6. index.js

# Cache inventory

List reports every cached version with its size; Prune removes versions
whose name@version matches a doublestar pattern.
*/
package npm
