// Command artie scrapes ROM metadata and artwork into a verified local cache.
package main
