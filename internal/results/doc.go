// Package results owns the shape of decoded experiment output.
//
// Ownership boundary:
// - the relational Table (ordered columns, heterogeneous cells)
// - result-buffer splitting (fault word + row-major sample matrix)
// - delimited text export
//
// Tables are plain data. Which rows and columns exist for which view is
// the aggregating caller's business.
package results
