package svsync

// Version is the current version of the go-svsync library
const Version = "0.1.0"
