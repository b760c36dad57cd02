/*
Package types defines the data model shared by the sentinel control loops.

The types here carry no behaviour beyond small helpers. They are passed by
value between packages:

  - Target and ProbeResult flow between pkg/health and its callers
  - Transition and FailoverState belong to pkg/failover
  - ContainerInfo and NetworkDescriptor are what pkg/runtime reports
  - ErrorObservation and PredictionCacheEntry belong to pkg/analyzer

Targets are immutable once configuration is loaded. ProbeResults are created
fresh on every check and never mutated afterwards.
*/
package types
