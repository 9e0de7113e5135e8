// Package doratrack ingests software delivery events from GitHub and
// derives the four DORA indicators per tracked repository per day:
// deployment frequency, change lead time, change failure rate, and
// time-to-restore.
package doratrack
