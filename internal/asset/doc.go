// Package asset resolves asset identifiers to blobs and builds the blob
// directory a live session loads from.
//
// Identifiers are the guid strings that scene documents use to reference
// meshes, materials and other external assets. Resolvers implement
// coerce.AssetResolver over a local directory (DirStore) or a static file
// server (HTTPStore); Cache memoizes either. CollectIDs and Bundle are the
// build side: they find every identifier a tree references and copy the
// matching project files into a blob directory keyed by identifier.
package asset
