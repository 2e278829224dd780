// Package paths provides the on-disk layout shared by the resolver, the
// loader and the cache commands.
//
// # Directory Structure
//
//	{cacheRoot}/                    (default: $XDG_CACHE_HOME/executejs/npm)
//	  ├── lodash/
//	  │   └── 4.17.21/
//	  │       └── package/          (unpacked tarball)
//	  │           └── package.json  (cache-hit marker)
//	  └── @scope/
//	      └── name/
//	          └── 1.2.3/
//	              └── package/
//
// # Usage
//
//	pkg := paths.PackagePath(root, "@scope/name", "1.2.3")
//	if _, err := os.Stat(pkg.ManifestPath()); err == nil {
//	    // cached
//	}
package paths
