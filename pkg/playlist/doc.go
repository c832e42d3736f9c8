// Package playlist classifies radio playlist responses and extracts the media
// URL they point at.
//
// Stations publish their streams behind several kinds of indirection:
//   - M3U (audio/x-mpegurl): one URL per line, comments start with '#'
//   - PLS (audio/x-scpls): INI style "FileN=<url>" entries
//   - ASF/ASX (video/x-ms-asf): XML with <REF HREF="<url>"/> entries
//
// Entries are scanned from the end of the file backward because stations
// usually list their freshest or most specific entry last. Only absolute
// http(s) URLs are ever returned.
package playlist
