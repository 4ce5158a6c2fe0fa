// Package sentiment annotates comment text with a polarity score using an
// external text analytics service.
package sentiment
