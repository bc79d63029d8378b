// Package section decodes the structural sections of a contact-matrix file.
//
// # File Layout
//
//	┌───────────────────────────────────────────────────────────┐
//	│ Header                                                    │
//	│  - "HIC\0", version, master index offset, genome          │
//	│  - NVI position/length (v9+), attributes (v5+)            │
//	│  - chromosome dictionary, bp and fragment resolutions     │
//	│  - restriction site arrays (only with fragment levels)    │
//	├───────────────────────────────────────────────────────────┤
//	│ Matrix bodies (one per chromosome pair)                   │
//	│  - chr1, chr2, zoom headers each followed by its 16-byte  │
//	│    block index records                                    │
//	├───────────────────────────────────────────────────────────┤
//	│ Compressed blocks                                         │
//	├───────────────────────────────────────────────────────────┤
//	│ Footer (at master index offset)                           │
//	│  - byte length, master index ("chr1_chr2" -> pos, size)   │
//	│  - unnormalized expected values                           │
//	├───────────────────────────────────────────────────────────┤
//	│ Normalization section (v6+, optional)                     │
//	│  - normalized expected values                             │
//	│  - normalization vector index                             │
//	│  - normalization vectors                                  │
//	└───────────────────────────────────────────────────────────┘
//
// Counts and sizes widen to 64 bits and stored vector values narrow to float32
// starting with version 9 (see format.Version).
package section
