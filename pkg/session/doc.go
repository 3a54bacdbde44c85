/*
Package session serialises runs of the same test case.

A Manager hands out one in-process lock per key, reference counted so idle
keys are forgotten, and can additionally hold a distributed lock (for example
the redis adapter) so that replicas sharing a browser grid or a report store
never run the same test case at once.
*/
package session
