// Package review serializes flagged rows into Label Studio pre-annotation
// tasks for human relabeling.
package review
