// Package apiresponses provides the {success, msg} response helpers shared by
// the api and ratelimit packages without import cycles.
package apiresponses
