// Package bagit implements the subset of the BagIt packaging convention the
// pipeline needs: validating an extracted bag, editing bag-info.txt, and
// regenerating payload and tag manifests after restructuring.
package bagit
