// Package octree provides the two spatial indexes used by the mesh engine:
// a triangle tree that drives pairwise intersection and ray casting, and a
// vertex tree that drives tolerance-based vertex merging. Both are built
// once, queried many times, and never mutated after construction.
package octree
