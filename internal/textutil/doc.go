// Package textutil provides text processing for addon names, slugs, upload
// file names, and search relevance.
//
// Name keys fold case and Unicode compatibility forms so "Delicious Bookmarks"
// and "ＤＥＬＩＣＩＯＵＳ bookmarks " collide when uniqueness is checked. Slugs are
// ASCII. Fingerprints are term-frequency vectors compared with cosine
// similarity to rank app search results.
package textutil
