// Package compression packs FAT12 disk images for storage and transfer.
//
// A freshly formatted 1.44 MiB floppy is almost entirely null bytes, so images
// compress extremely well. The best results come from run-length encoding the
// raw image first, then using gzip on the result.
//
// The run-length encoding used is the one from the Microsoft BMP file format,
// also known as RLE8: if a byte B occurs N times where N >= 2, B is written
// twice, followed by a third (unsigned) byte indicating how many additional
// times B occurred. For example:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// A group holds at most 257 bytes; longer runs are split into several groups.
// A run of 300 "X" is stored as `XX 255 XX 41`. Since a byte is its own escape
// sequence, a byte occurring exactly twice takes three bytes: the pair followed
// by a zero repeat count.
package compression
