// Command seqwatch-sim exercises sequence number recovery end to end.
//
// Two in-process peers run a Noise IK handshake, derive session keys, and
// one sends numbered packets to the other through a lossy, reordering
// channel, either simulated in memory or over loopback UDP. The peers rekey
// partway through when asked to, and whenever the sending key needs
// replacing. A summary table shows how many packets were recovered and how
// the rest were lost.
//
// Usage:
//
//	seqwatch-sim [OPTION]...
//
// Examples:
//
//	seqwatch-sim -n 5000 -d 0.1 -r 64 --rekey-at=2500
//	seqwatch-sim --udp --rekey-at=500 --suite=Twofish256
//
// Long flags take their value as --flag=value; shorthand flags accept a
// separate argument.
package main
