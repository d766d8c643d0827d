// Package s3 implements blobstore.Store on AWS S3.
//
// Uploads go through the S3 transfer manager so large snapshot blobs are
// split into concurrent multipart uploads automatically.
package s3
