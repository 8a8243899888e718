/*Package interval implements interval-union operations in a manner optimized
  for sets of genomic coordinates represented by BED files, plus sweep-based
  set algebra (union, k-of-n intersection, complement, source coverage) over
  intervals tagged with the sample they came from.

  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.  All sweep operations sort
  their input once and then run in time proportional to the output.
*/
package interval
